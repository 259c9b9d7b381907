package db

import (
	"path/filepath"
	"testing"

	"cmdsite/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "registry", "commands.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func command(name string, aliases ...string) model.Command {
	return model.Command{
		Name:            name,
		Aliases:         aliases,
		Usage:           name + " [args]",
		Description:     "does " + name,
		ChannelCooldown: model.Seconds(5),
		UserCooldown:    model.Text("1m"),
		CanDisable:      true,
	}
}

func TestAddAndList(t *testing.T) {
	d := openTest(t)

	require.NoError(t, d.Add(command("ping")))
	require.NoError(t, d.Add(command("help", "commands")))

	cmds, err := d.List()
	require.NoError(t, err)
	require.Len(t, cmds, 2)

	assert.Equal(t, "ping", cmds[0].Name)
	assert.Equal(t, []string{}, cmds[0].Aliases)
	assert.Equal(t, "help", cmds[1].Name)
	assert.Equal(t, []string{"commands"}, cmds[1].Aliases)
	assert.Equal(t, "5", cmds[1].ChannelCooldown.String())
	assert.True(t, cmds[1].ChannelCooldown.IsNumber())
	assert.Equal(t, "1m", cmds[1].UserCooldown.String())
	assert.False(t, cmds[1].UserCooldown.IsNumber())
}

func TestAddDuplicate(t *testing.T) {
	d := openTest(t)
	require.NoError(t, d.Add(command("help", "commands")))

	assert.ErrorIs(t, d.Add(command("help")), ErrDuplicate)
	assert.ErrorIs(t, d.Add(command("commands")), ErrDuplicate)
	assert.ErrorIs(t, d.Add(command("list", "help")), ErrDuplicate)

	noPrefix := command("commands")
	noPrefix.NoPrefix = true
	assert.NoError(t, d.Add(noPrefix), "no-prefix commands do not share the prefixed namespace")
}

func TestUpdate(t *testing.T) {
	d := openTest(t)
	require.NoError(t, d.Add(command("ping")))
	require.NoError(t, d.Add(command("help")))

	updated := command("pong", "p")
	require.NoError(t, d.Update("ping", updated))

	cmds, err := d.List()
	require.NoError(t, err)
	assert.Equal(t, "pong", cmds[0].Name)
	assert.Equal(t, []string{"p"}, cmds[0].Aliases)

	assert.ErrorIs(t, d.Update("missing", command("x")), ErrNotFound)
	assert.ErrorIs(t, d.Update("pong", command("help")), ErrDuplicate)
}

func TestGet(t *testing.T) {
	d := openTest(t)
	require.NoError(t, d.Add(command("help", "commands")))

	c, err := d.Get("help")
	require.NoError(t, err)
	assert.Equal(t, []string{"commands"}, c.Aliases)
	assert.Equal(t, "1m", c.UserCooldown.String())

	_, err = d.Get("commands")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	d := openTest(t)
	require.NoError(t, d.Add(command("ping")))

	require.NoError(t, d.Delete("ping"))
	assert.ErrorIs(t, d.Delete("ping"), ErrNotFound)

	cmds, err := d.List()
	require.NoError(t, err)
	assert.Empty(t, cmds)
}

func TestReplace(t *testing.T) {
	d := openTest(t)
	require.NoError(t, d.Add(command("old")))

	require.NoError(t, d.Replace([]model.Command{command("b"), command("a")}))

	cmds, err := d.List()
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "b", cmds[0].Name)
	assert.Equal(t, "a", cmds[1].Name)

	err = d.Replace([]model.Command{command("x"), command("x")})
	assert.ErrorIs(t, err, ErrDuplicate)

	cmds, err = d.List()
	require.NoError(t, err)
	assert.Len(t, cmds, 2, "failed replace leaves the registry untouched")
}
