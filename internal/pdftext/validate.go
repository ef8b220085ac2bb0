package pdftext

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func relaxedConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// Validate checks that path is a structurally readable PDF.
func Validate(path string) error {
	if err := api.ValidateFile(path, relaxedConfig()); err != nil {
		return fmt.Errorf("invalid pdf: %w", err)
	}
	return nil
}

// PageCount returns the number of pages in path.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return n, nil
}
