package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ThiagoRGoveia/market-data-loader/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// LoadDataConfigs reads the JSON array of data configurations at path and
// returns the active, valid ones. Invalid entries are logged and left out.
func LoadDataConfigs(path string) ([]models.DataConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data config %s: %w", path, err)
	}

	return ParseDataConfigs(data)
}

func ParseDataConfigs(data []byte) ([]models.DataConfig, error) {
	var all []models.DataConfig
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("%w: invalid data config: %v", models.ErrConfiguration, err)
	}

	active := make([]models.DataConfig, 0, len(all))
	for i, cfg := range all {
		if !cfg.Active {
			log.Printf("Skipping inactive data config %d (%s)", i, cfg.Type)
			continue
		}
		if err := ValidateDataConfig(&cfg); err != nil {
			log.Printf("WARN: Skipping data config %d (%s): %v", i, cfg.Type, err)
			continue
		}
		active = append(active, cfg)
	}

	return active, nil
}

// ValidateDataConfig checks the struct tags and that every configured column
// has a label and type mapping.
func ValidateDataConfig(cfg *models.DataConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", models.ErrConfiguration, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}

	for _, folder := range cfg.Folders {
		for _, column := range folder.Columns {
			target, ok := folder.ColumnLabelAndTypeMapping[column]
			if !ok || target.Label == "" {
				return fmt.Errorf("%w: folder %s: column %s has no label mapping",
					models.ErrConfiguration, folder.FolderName, column)
			}
		}
	}

	return nil
}
