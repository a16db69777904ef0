package knowledge

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed docs/*.txt
var embeddedDocs embed.FS

// Source loads the raw text of a named document.
type Source interface {
	Document(ctx context.Context, name string) (string, error)
}

// EmbeddedSource serves the documents compiled into the binary.
type EmbeddedSource struct {
	fsys fs.FS
}

func NewEmbeddedSource() *EmbeddedSource {
	return &EmbeddedSource{fsys: embeddedDocs}
}

func (s *EmbeddedSource) Document(_ context.Context, name string) (string, error) {
	raw, err := fs.ReadFile(s.fsys, "docs/"+name+".txt")
	if err != nil {
		return "", fmt.Errorf("knowledge: read embedded %q: %w", name, err)
	}
	return string(raw), nil
}

// ParamGetter reads a parameter value by name.
type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ParamSource reads documents from SSM parameters named <prefix>/knowledge/<name>.
type ParamSource struct {
	params ParamGetter
	prefix string
}

func NewParamSource(params ParamGetter, prefix string) (*ParamSource, error) {
	if params == nil {
		return nil, fmt.Errorf("knowledge: param getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, fmt.Errorf("knowledge: parameter prefix must not be empty")
	}
	return &ParamSource{params: params, prefix: prefix}, nil
}

func (s *ParamSource) Document(ctx context.Context, name string) (string, error) {
	v, err := s.params.GetParameter(ctx, s.prefix+"/knowledge/"+name)
	if err != nil {
		return "", fmt.Errorf("knowledge: load %q: %w", name, err)
	}
	return v, nil
}
