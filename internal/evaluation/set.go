// Package evaluation measures the answerability gate against labeled queries.
package evaluation

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

// Case is one labeled query. Answerable is the human judgement of whether the
// manual holds enough evidence to answer it.
type Case struct {
	Query      string `yaml:"query"`
	ManualID   string `yaml:"manual_id"`
	TenantID   string `yaml:"tenant_id"`
	Answerable bool   `yaml:"answerable"`
}

func (c Case) Request() domain.QueryRequest {
	return domain.QueryRequest{Query: c.Query, ManualID: c.ManualID, TenantID: c.TenantID}
}

type Set struct {
	Cases []Case `yaml:"cases"`
}

func LoadSet(r io.Reader) (Set, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var set Set
	if err := dec.Decode(&set); err != nil {
		if errors.Is(err, io.EOF) {
			return Set{}, domain.WrapError(domain.ErrInvalidInput, "load eval set", errors.New("empty document"))
		}
		return Set{}, domain.WrapError(domain.ErrInvalidInput, "load eval set", err)
	}
	if len(set.Cases) == 0 {
		return Set{}, domain.WrapError(domain.ErrInvalidInput, "load eval set", errors.New("no cases"))
	}
	for i, c := range set.Cases {
		if strings.TrimSpace(c.Query) == "" {
			return Set{}, domain.WrapError(domain.ErrInvalidInput, "load eval set", fmt.Errorf("case %d: empty query", i))
		}
	}
	return set, nil
}

func LoadSetFile(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return Set{}, fmt.Errorf("open eval set: %w", err)
	}
	defer f.Close()
	return LoadSet(f)
}
