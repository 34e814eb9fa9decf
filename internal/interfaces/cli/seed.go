package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jhoicas/hkd-sync/internal/domain/entity"
	"github.com/jhoicas/hkd-sync/pkg/phone"
)

// Fixture árbol remoto de ejemplo para entornos de prueba.
type Fixture struct {
	Units []FixtureUnit `yaml:"units"`
}

// FixtureUnit unidad operadora con su menú.
type FixtureUnit struct {
	ID         string            `yaml:"id"`
	Phone      string            `yaml:"phone"`
	Name       string            `yaml:"name"`
	Address    string            `yaml:"address"`
	Secret     string            `yaml:"secret"`
	Categories []FixtureCategory `yaml:"categories"`
	Products   []FixtureProduct  `yaml:"products"`
}

type FixtureCategory struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type FixtureProduct struct {
	ID       string `yaml:"id"`
	Category string `yaml:"category"`
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	Unit     string `yaml:"unit"`
}

// ParseFixture lee y valida un fixture YAML.
func ParseFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	for i, u := range f.Units {
		if u.ID == "" || u.Phone == "" || u.Secret == "" {
			return nil, fmt.Errorf("fixture: unit %d requires id, phone and secret", i)
		}
		cats := make(map[string]bool, len(u.Categories))
		for _, c := range u.Categories {
			if c.ID == "" {
				return nil, fmt.Errorf("fixture: unit %s has a category without id", u.ID)
			}
			cats[c.ID] = true
		}
		for _, p := range u.Products {
			if p.ID == "" {
				return nil, fmt.Errorf("fixture: unit %s has a product without id", u.ID)
			}
			if p.Category != "" && !cats[p.Category] {
				return nil, fmt.Errorf("fixture: product %s references unknown category %s", p.ID, p.Category)
			}
			if _, err := decimal.NewFromString(p.Price); err != nil {
				return nil, fmt.Errorf("fixture: product %s price %q: %w", p.ID, p.Price, err)
			}
		}
	}
	return &f, nil
}

// Records entidades del fixture tal como se escriben en el remoto.
func (f *Fixture) Records(phones phone.Normalizer, now time.Time) []entity.Record {
	var out []entity.Record
	for _, u := range f.Units {
		out = append(out, entity.BusinessUnit{
			ID:          u.ID,
			Phone:       phones.Normalize(u.Phone),
			Name:        u.Name,
			Address:     u.Address,
			Role:        entity.RoleOperator,
			Secret:      u.Secret,
			LastUpdated: now,
		})
		for _, c := range u.Categories {
			out = append(out, entity.Category{ID: c.ID, BusinessUnitID: u.ID, Name: c.Name, UpdatedAt: now})
		}
		for _, p := range u.Products {
			out = append(out, entity.Product{
				ID:             p.ID,
				BusinessUnitID: u.ID,
				CategoryID:     p.Category,
				Name:           p.Name,
				Price:          decimal.RequireFromString(p.Price),
				Unit:           strings.TrimSpace(p.Unit),
				UpdatedAt:      now,
			})
		}
	}
	return out
}

// fieldWriter lo implementa *remote.Client.
type fieldWriter interface {
	WriteField(ctx context.Context, path string, value json.RawMessage) error
}

// Seed escribe cada entidad del fixture en su ruta remota.
func Seed(ctx context.Context, w fieldWriter, records []entity.Record) (int, error) {
	for i, r := range records {
		raw, err := json.Marshal(r)
		if err != nil {
			return i, fmt.Errorf("marshal %s %s: %w", r.Collection(), r.RecordID(), err)
		}
		if err := w.WriteField(ctx, entity.PathFor(r.Collection(), r.OwnerID(), r.RecordID()), raw); err != nil {
			return i, err
		}
	}
	return len(records), nil
}

// NewSeedCommand crea el comando seed.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Carga unidades, categorías y productos de ejemplo en el almacén remoto",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			fixture, err := ParseFixture(file)
			if err != nil {
				return err
			}

			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			phones := phone.NewNormalizer(a.Config.Auth.PhoneRegion)
			n, err := Seed(cmd.Context(), a.Remote, fixture.Records(phones, time.Now().UTC()))
			if err != nil {
				return fmt.Errorf("seed (%d escritos): %w", n, err)
			}
			return rootOpts.output(cmd).Success(map[string]int{"written": n}, fmt.Sprintf("%d documentos escritos", n))
		},
	}
}
