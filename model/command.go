package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Command is one entry of the published command list (commands.json).
type Command struct {
	Name            string
	Aliases         []string
	Usage           string
	Description     string
	ChannelCooldown Cooldown
	UserCooldown    Cooldown
	NoPrefix        bool
	CanDisable      bool
}

// Cooldown holds a cooldown as published: either a JSON number or a JSON
// string. Numbers keep their JSON literal so they are written back unchanged.
type Cooldown struct {
	text   string
	quoted bool
}

// Seconds returns a numeric cooldown. NaN and infinities have no JSON
// number form and are kept as text.
func Seconds(n float64) Cooldown {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Text(formatNumber(n))
	}
	return Cooldown{text: strconv.FormatFloat(n, 'g', -1, 64)}
}

// Text returns a free-form cooldown such as "5m".
func Text(s string) Cooldown {
	return Cooldown{text: s, quoted: true}
}

// String is the displayed form. Numbers print the way a browser prints
// them: 1.50 as 1.5, 1e21 as 1e+21, 1e400 as Infinity.
func (c Cooldown) String() string {
	if c.quoted {
		return c.text
	}
	f, ok := c.Seconds()
	if !ok {
		return c.text
	}
	return formatNumber(f)
}

// IsNumber reports whether the cooldown was published as a JSON number.
func (c Cooldown) IsNumber() bool {
	return !c.quoted && c.text != ""
}

// Seconds returns the numeric value when the cooldown is a number. Literals
// beyond the float64 range give an infinity.
func (c Cooldown) Seconds() (float64, bool) {
	if !c.IsNumber() {
		return 0, false
	}
	f, err := strconv.ParseFloat(c.text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

func (c Cooldown) MarshalJSON() ([]byte, error) {
	if c.quoted {
		return json.Marshal(c.text)
	}
	if c.text == "" {
		return []byte("0"), nil
	}
	return []byte(c.text), nil
}

func (c *Cooldown) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("cooldown: empty value")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("cooldown: %w", err)
		}
		*c = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("cooldown: want number or string, got %s", data)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil && !errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("cooldown: %w", err)
	}
	*c = Cooldown{text: n.String()}
	return nil
}

// formatNumber renders f like JavaScript's Number.prototype.toString:
// plain decimals for 1e-6 <= |f| < 1e21, exponent form otherwise.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	exp = strings.TrimLeft(exp[1:], "0")
	return mant + "e" + sign + exp
}
