package trackerapi

import (
	"fmt"
	"os"
	"strings"

	"github.com/attract-vse/attract/internal/attractapi"
	"gopkg.in/yaml.v3"
)

// Seed is the YAML bootstrap document for a tracker.
type Seed struct {
	NodeTypes []SeedNodeType `yaml:"node_types"`
	Tokens    []SeedToken    `yaml:"tokens"`
}

type SeedNodeType struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type SeedToken struct {
	Token   string `yaml:"token"`
	User    string `yaml:"user"`
	Expires string `yaml:"expire_time"`
}

// DefaultSeed provides the shot node type and one development token.
func DefaultSeed() Seed {
	return Seed{
		NodeTypes: []SeedNodeType{{Name: "shot", Description: "Editorial shot"}},
		Tokens:    []SeedToken{{Token: "dev-token", User: "dev-user"}},
	}
}

func LoadSeedFile(path string) (Seed, error) {
	data, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return Seed{}, err
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	for i, nt := range seed.NodeTypes {
		if strings.TrimSpace(nt.Name) == "" {
			return Seed{}, fmt.Errorf("%w: node_types[%d] has no name", ErrInvalidInput, i)
		}
	}
	for i, tok := range seed.Tokens {
		if strings.TrimSpace(tok.Token) == "" || strings.TrimSpace(tok.User) == "" {
			return Seed{}, fmt.Errorf("%w: tokens[%d] needs token and user", ErrInvalidInput, i)
		}
	}
	return seed, nil
}

func (t *Tracker) ApplySeed(seed Seed) {
	for _, nt := range seed.NodeTypes {
		t.AddNodeType(attractapi.NodeType{
			ID:          strings.TrimSpace(nt.ID),
			Name:        strings.TrimSpace(nt.Name),
			Description: nt.Description,
		})
	}
	for _, tok := range seed.Tokens {
		t.AddToken(attractapi.Token{
			Token:   strings.TrimSpace(tok.Token),
			User:    strings.TrimSpace(tok.User),
			Expires: strings.TrimSpace(tok.Expires),
		})
	}
}
