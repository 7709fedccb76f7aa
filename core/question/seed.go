package question

import (
	"bytes"
	_ "embed"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultBank []byte

// Bank is the YAML layout of a question seed file.
type Bank struct {
	Questions []Question `yaml:"questions"`
}

// DefaultBank returns the question bank shipped with the binary.
func DefaultBank() ([]Question, error) {
	return ParseBank(defaultBank)
}

// LoadBank reads a question bank from a YAML file.
func LoadBank(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBank(data)
}

func ParseBank(data []byte) ([]Question, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var bank Bank
	if err := dec.Decode(&bank); err != nil {
		return nil, errors.Wrap(err, "decoding question bank")
	}
	if len(bank.Questions) == 0 {
		return nil, errors.New("question bank is empty")
	}
	return bank.Questions, nil
}
