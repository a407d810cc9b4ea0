package stamp

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// Keep pdfcpu from creating a config directory in the user's home.
	api.DisableConfigDir()
}

func validationConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// validateDocument runs pdfcpu's structural validation over doc.
func validateDocument(doc []byte) error {
	return api.Validate(bytes.NewReader(doc), validationConfig())
}

// ValidatedPageCount counts pages with pdfcpu, independently of this
// package's own reader.
func ValidatedPageCount(doc []byte) (int, error) {
	return api.PageCount(bytes.NewReader(doc), validationConfig())
}
