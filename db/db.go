package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cmdsite/model"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrDuplicate = errors.New("command name or alias already registered")
	ErrNotFound  = errors.New("command not found")
)

// DB is the registry the published command list is generated from.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if needed) the registry at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) migrate() error {
	_, err := d.conn.Exec(`
		CREATE TABLE IF NOT EXISTS commands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			aliases TEXT NOT NULL DEFAULT '[]',
			usage TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			channel_cooldown TEXT NOT NULL DEFAULT '0',
			user_cooldown TEXT NOT NULL DEFAULT '0',
			no_prefix BOOLEAN NOT NULL DEFAULT 0,
			can_disable BOOLEAN NOT NULL DEFAULT 0
		);
	`)
	return err
}

func (d *DB) Close() error {
	return d.conn.Close()
}

const selectColumns = `SELECT name, aliases, usage, description, channel_cooldown, user_cooldown, no_prefix, can_disable FROM commands`

// List returns the registered commands in registration order.
func (d *DB) List() ([]model.Command, error) {
	rows, err := d.conn.Query(selectColumns + ` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commands []model.Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		commands = append(commands, c)
	}
	return commands, rows.Err()
}

// Get returns the command registered as name.
func (d *DB) Get(name string) (model.Command, error) {
	c, err := scanCommand(d.conn.QueryRow(selectColumns+` WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Command{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return c, err
}

func scanCommand(row interface{ Scan(...any) error }) (model.Command, error) {
	var (
		c                          model.Command
		aliases, channelCD, userCD string
	)
	if err := row.Scan(&c.Name, &aliases, &c.Usage, &c.Description, &channelCD, &userCD, &c.NoPrefix, &c.CanDisable); err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(aliases), &c.Aliases); err != nil {
		return c, fmt.Errorf("aliases of %s: %w", c.Name, err)
	}
	if err := json.Unmarshal([]byte(channelCD), &c.ChannelCooldown); err != nil {
		return c, fmt.Errorf("channel cooldown of %s: %w", c.Name, err)
	}
	if err := json.Unmarshal([]byte(userCD), &c.UserCooldown); err != nil {
		return c, fmt.Errorf("user cooldown of %s: %w", c.Name, err)
	}
	return c, nil
}

// Add registers cmd. Names and aliases of prefixed commands must not collide
// with another prefixed command.
func (d *DB) Add(cmd model.Command) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := checkDuplicate(tx, cmd, ""); err != nil {
		return err
	}
	if err := insert(tx, cmd); err != nil {
		return err
	}
	return tx.Commit()
}

// Update replaces the command registered as name.
func (d *DB) Update(name string, cmd model.Command) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := checkDuplicate(tx, cmd, name); err != nil {
		return err
	}

	args, err := columns(cmd)
	if err != nil {
		return err
	}
	result, err := tx.Exec(
		`UPDATE commands SET name = ?, aliases = ?, usage = ?, description = ?, channel_cooldown = ?, user_cooldown = ?, no_prefix = ?, can_disable = ? WHERE name = ?`,
		append(args, name)...,
	)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return tx.Commit()
}

func (d *DB) Delete(name string) error {
	result, err := d.conn.Exec(`DELETE FROM commands WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// Replace drops every registered command and registers cmds in order.
func (d *DB) Replace(cmds []model.Command) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM commands`); err != nil {
		return err
	}
	for _, cmd := range cmds {
		if err := checkDuplicate(tx, cmd, ""); err != nil {
			return err
		}
		if err := insert(tx, cmd); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insert(tx *sql.Tx, cmd model.Command) error {
	args, err := columns(cmd)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT INTO commands (name, aliases, usage, description, channel_cooldown, user_cooldown, no_prefix, can_disable) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	return err
}

func columns(cmd model.Command) ([]any, error) {
	aliases := cmd.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	aliasesJSON, err := json.Marshal(aliases)
	if err != nil {
		return nil, err
	}
	channelCD, err := json.Marshal(cmd.ChannelCooldown)
	if err != nil {
		return nil, err
	}
	userCD, err := json.Marshal(cmd.UserCooldown)
	if err != nil {
		return nil, err
	}
	return []any{
		cmd.Name, string(aliasesJSON), cmd.Usage, cmd.Description,
		string(channelCD), string(userCD), cmd.NoPrefix, cmd.CanDisable,
	}, nil
}

// checkDuplicate reports ErrDuplicate when cmd's name is taken, or when one
// of its names collides with the name or an alias of another prefixed
// command. except is the name of the command being replaced.
func checkDuplicate(tx *sql.Tx, cmd model.Command, except string) error {
	rows, err := tx.Query(`SELECT name, aliases, no_prefix FROM commands WHERE name != ?`, except)
	if err != nil {
		return err
	}
	defer rows.Close()

	wanted := map[string]bool{cmd.Name: true}
	for _, alias := range cmd.Aliases {
		wanted[alias] = true
	}

	for rows.Next() {
		var (
			name, aliasesJSON string
			noPrefix          bool
		)
		if err := rows.Scan(&name, &aliasesJSON, &noPrefix); err != nil {
			return err
		}
		if name == cmd.Name {
			return fmt.Errorf("%w: %s", ErrDuplicate, name)
		}
		if noPrefix || cmd.NoPrefix {
			continue
		}
		var aliases []string
		if err := json.Unmarshal([]byte(aliasesJSON), &aliases); err != nil {
			return fmt.Errorf("aliases of %s: %w", name, err)
		}
		for _, taken := range append(aliases, name) {
			if wanted[taken] {
				return fmt.Errorf("%w: %s (used by %s)", ErrDuplicate, taken, name)
			}
		}
	}
	return rows.Err()
}
