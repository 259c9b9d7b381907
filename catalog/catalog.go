// Package catalog reads and writes commands.json, the published command list.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"cmdsite/model"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalid is returned when a document is not a valid command list.
var ErrInvalid = errors.New("invalid command list")

//go:embed commands.schema.json
var schemaJSON []byte

const schemaURL = "commands.schema.json"

var (
	compileOnce sync.Once
	schema      *jsonschema.Schema
	compileErr  error
)

func compiled() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("failed to parse command list schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("failed to add command list schema: %w", err)
			return
		}
		schema, compileErr = c.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("failed to compile command list schema: %w", compileErr)
		}
	})
	return schema, compileErr
}

// Decode reads a command list and validates it before decoding.
func Decode(r io.Reader) ([]model.Command, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read command list: %w", err)
	}
	return Unmarshal(data)
}

// Unmarshal validates data against the command list schema and decodes it.
// Entries keep their document order.
func Unmarshal(data []byte) ([]model.Command, error) {
	sch, err := compiled()
	if err != nil {
		return nil, err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	var cmds []model.Command
	if err := json.Unmarshal(data, &cmds); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cmds, nil
}

// Prepare returns the list as it should be published: prefixed commands get
// prefix prepended to their name, and the result is sorted by name with
// no-prefix commands first on ties. cmds is not modified.
func Prepare(cmds []model.Command, prefix string) []model.Command {
	out := make([]model.Command, len(cmds))
	for i, cmd := range cmds {
		if !cmd.NoPrefix {
			cmd.Name = prefix + cmd.Name
		}
		if cmd.Aliases == nil {
			cmd.Aliases = []string{}
		} else {
			cmd.Aliases = slices.Clone(cmd.Aliases)
		}
		out[i] = cmd
	}

	slices.SortStableFunc(out, func(a, b model.Command) int {
		if a.Name == b.Name {
			switch {
			case a.NoPrefix && !b.NoPrefix:
				return -1
			case !a.NoPrefix && b.NoPrefix:
				return 1
			}
			return 0
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Write encodes cmds with two-space indentation.
func Write(w io.Writer, cmds []model.Command) error {
	if cmds == nil {
		cmds = []model.Command{}
	}
	data, err := json.MarshalIndent(cmds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode command list: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// WriteFile writes cmds to path.
func WriteFile(path string, cmds []model.Command) error {
	var buf bytes.Buffer
	if err := Write(&buf, cmds); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write command list %s: %w", path, err)
	}
	return nil
}
