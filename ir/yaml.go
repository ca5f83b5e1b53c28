package ir

import (
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the serialized unit: one register file description plus one
// function.
type File struct {
	RegInfo  *RegInfo  `yaml:"reginfo"`
	Function *Function `yaml:"function"`
}

// EncodeYAML writes the file in YAML form.
func EncodeYAML(w io.Writer, file *File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return errors.Wrap(err, "encoding function")
	}
	return errors.Wrap(enc.Close(), "encoding function")
}

// DecodeYAML reads a file in YAML form and prepares the function's operand
// lists.
func DecodeYAML(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var file File
	if err := dec.Decode(&file); err != nil {
		return nil, errors.Wrap(err, "decoding function")
	}
	if file.RegInfo == nil || file.Function == nil {
		return nil, errors.New("decoding function: missing reginfo or function section")
	}
	if err := file.Function.Prepare(); err != nil {
		return nil, errors.Wrap(err, "decoding function")
	}
	return &file, nil
}
