package config

import (
	"fmt"
	"strings"
)

// OutputFormat selects IR serialization produced by compile command.
type OutputFormat int

const (
	OutputFormatText OutputFormat = iota
	OutputFormatBinary
)

var outputFormatNames = []string{
	OutputFormatText:   "text",
	OutputFormatBinary: "binary",
}

var ErrInvalidOutputFormat = fmt.Errorf("not a valid OutputFormat, try [%s]", strings.Join(outputFormatNames, ", "))

// OutputFormatNames returns list of possible string values.
func OutputFormatNames() []string {
	return append([]string(nil), outputFormatNames...)
}

func (f OutputFormat) String() string {
	if f >= 0 && int(f) < len(outputFormatNames) {
		return outputFormatNames[f]
	}
	return fmt.Sprintf("OutputFormat(%d)", int(f))
}

func (f OutputFormat) IsValid() bool {
	return f >= 0 && int(f) < len(outputFormatNames)
}

// ParseOutputFormat accepts names case-insensitively.
func ParseOutputFormat(name string) (OutputFormat, error) {
	for i, n := range outputFormatNames {
		if strings.EqualFold(n, name) {
			return OutputFormat(i), nil
		}
	}
	return 0, fmt.Errorf("%s is %w", name, ErrInvalidOutputFormat)
}

func (f OutputFormat) MarshalText() ([]byte, error) {
	if !f.IsValid() {
		return nil, fmt.Errorf("%d is %w", int(f), ErrInvalidOutputFormat)
	}
	return []byte(f.String()), nil
}

func (f *OutputFormat) UnmarshalText(text []byte) error {
	v, err := ParseOutputFormat(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Ext returns file extension for the format.
func (f OutputFormat) Ext() string {
	switch f {
	case OutputFormatText:
		return ".irt"
	case OutputFormatBinary:
		return ".irb"
	default:
		// this should never happen
		panic("unsupported format requested")
	}
}
