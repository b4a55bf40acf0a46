// Package catalog stores outbound message templates and renders their
// {{param}} placeholders.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"leadfunnel/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("template not found")

type Catalog struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) Find(ctx context.Context, name string) (*models.Template, error) {
	var t models.Template
	err := c.db.WithContext(ctx).Where("name = ?", name).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Catalog) List(ctx context.Context) ([]models.Template, error) {
	var out []models.Template
	if err := c.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert inserts t or overwrites the template with the same name.
func (c *Catalog) Upsert(ctx context.Context, t *models.Template) error {
	if t.Name == "" {
		return fmt.Errorf("upsert template: empty name")
	}
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"language", "category", "status", "body", "buttons", "meta_id"}),
	}).Create(t).Error
}

// Buttons decodes the template's quick-reply labels.
func Buttons(t *models.Template) []string {
	if t == nil || t.Buttons == "" {
		return nil
	}
	var labels []string
	if err := json.Unmarshal([]byte(t.Buttons), &labels); err != nil {
		return nil
	}
	return labels
}

// EncodeButtons is the inverse of Buttons.
func EncodeButtons(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	b, _ := json.Marshal(labels)
	return string(b)
}

// Param is one named template parameter.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Render substitutes {{name}} placeholders from params. Positional
// placeholders {{1}}, {{2}} take the params in order. Unknown
// placeholders are left untouched.
func Render(body string, params []Param) string {
	lookup := make(map[string]string, 2*len(params))
	for i, p := range params {
		lookup[p.Name] = p.Value
		lookup[strconv.Itoa(i+1)] = p.Value
	}
	return placeholder.ReplaceAllStringFunc(body, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if v, ok := lookup[key]; ok {
			return v
		}
		return m
	})
}
