package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"asset-custody-api/internal/models"

	"github.com/tealeg/xlsx/v3"
	"gopkg.in/yaml.v3"
)

// Mapped fields a column may feed
const (
	FieldCategory     = "category"
	FieldSerialNumber = "serial_number"
	FieldStatus       = "status"
)

// AssetCreator registers assets on behalf of a caller
type AssetCreator interface {
	CreateAsset(ctx context.Context, caller models.Principal, req models.CreateAssetRequest) (*models.Asset, error)
}

// ImportOptions defines the configuration for Excel import operations
type ImportOptions struct {
	Caller      models.Principal
	MappingPath string // empty uses DefaultMapping
	DryRun      bool
	MaxErrors   int // default 50
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// SheetSummary contains the import statistics for a single sheet
type SheetSummary struct {
	Name     string     `json:"name"`
	Inserted int        `json:"inserted"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"error_samples,omitempty"`
}

// ImportSummary contains the overall import statistics
type ImportSummary struct {
	Inserted int            `json:"inserted"`
	Skipped  int            `json:"skipped"`
	Errors   int            `json:"errors"`
	Sheets   []SheetSummary `json:"sheets"`
	DryRun   bool           `json:"dry_run"`
}

// MappingConfig represents the YAML mapping configuration
type MappingConfig struct {
	Version int                    `yaml:"version"`
	Default SheetConfig            `yaml:"default"`
	Sheets  map[string]SheetConfig `yaml:"sheets"`
}

// SheetConfig maps the header row of one sheet onto asset fields.
// Category and Status are used when a row leaves the column empty.
type SheetConfig struct {
	Category string              `yaml:"category"`
	Status   string              `yaml:"status"`
	Aliases  map[string][]string `yaml:"aliases"`
}

// DefaultMapping accepts headers named after the fields themselves
func DefaultMapping() *MappingConfig {
	return &MappingConfig{
		Version: 1,
		Default: SheetConfig{
			Status: string(models.StatusAvailable),
			Aliases: map[string][]string{
				FieldCategory:     {"Category", "Type"},
				FieldSerialNumber: {"Serial Number", "Serial", "S/N"},
				FieldStatus:       {"Status"},
			},
		},
	}
}

// LoadMapping reads a mapping file. An empty path yields DefaultMapping.
func LoadMapping(path string) (*MappingConfig, error) {
	if path == "" {
		return DefaultMapping(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", path, err)
	}
	var mapping MappingConfig
	if err := yaml.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("parse mapping %s: %w", path, err)
	}
	if mapping.Version != 1 {
		return nil, fmt.Errorf("unsupported mapping version %d", mapping.Version)
	}
	for field := range mapping.Default.Aliases {
		if !knownField(field) {
			return nil, fmt.Errorf("mapping %s: unknown field %q", path, field)
		}
	}
	for name, sheet := range mapping.Sheets {
		for field := range sheet.Aliases {
			if !knownField(field) {
				return nil, fmt.Errorf("mapping %s: sheet %s: unknown field %q", path, name, field)
			}
		}
	}
	return &mapping, nil
}

func knownField(field string) bool {
	return field == FieldCategory || field == FieldSerialNumber || field == FieldStatus
}

// sheetConfig returns the configuration for a sheet, layered over the default
func (m *MappingConfig) sheetConfig(name string) SheetConfig {
	cfg := m.Default
	override, ok := m.Sheets[name]
	if !ok {
		return cfg
	}
	if override.Category != "" {
		cfg.Category = override.Category
	}
	if override.Status != "" {
		cfg.Status = override.Status
	}
	if len(override.Aliases) > 0 {
		merged := make(map[string][]string, len(cfg.Aliases)+len(override.Aliases))
		for field, aliases := range cfg.Aliases {
			merged[field] = aliases
		}
		for field, aliases := range override.Aliases {
			merged[field] = aliases
		}
		cfg.Aliases = merged
	}
	return cfg
}

// ImportExcel reads every sheet of an .xlsx workbook and registers one asset
// per data row through creator
func ImportExcel(ctx context.Context, creator AssetCreator, r io.Reader, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{
		DryRun: opts.DryRun,
		Sheets: []SheetSummary{},
	}

	// Set defaults
	if opts.MaxErrors == 0 {
		opts.MaxErrors = 50
	}

	mapping, err := LoadMapping(opts.MappingPath)
	if err != nil {
		return summary, fmt.Errorf("failed to load mapping config: %w", err)
	}

	// xlsx needs random access, so the upload is read fully first
	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("failed to read Excel file: %w", err)
	}
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return summary, fmt.Errorf("failed to open Excel file: %w", err)
	}

	imp := &sheetImporter{
		creator: creator,
		opts:    opts,
		seen:    make(map[string]bool),
	}
	for _, sheet := range xlFile.Sheets {
		sheetSummary, err := imp.processSheet(ctx, sheet, mapping.sheetConfig(sheet.Name))
		summary.Sheets = append(summary.Sheets, sheetSummary)

		// Accumulate totals
		summary.Inserted += sheetSummary.Inserted
		summary.Skipped += sheetSummary.Skipped
		summary.Errors += sheetSummary.Errors

		if err != nil {
			return summary, err
		}
		// Stop if too many errors
		if summary.Errors > opts.MaxErrors {
			return summary, fmt.Errorf("too many errors (%d), stopping import", summary.Errors)
		}
	}

	return summary, nil
}

type sheetImporter struct {
	creator AssetCreator
	opts    ImportOptions
	seen    map[string]bool // serial numbers accepted so far in this workbook
}

// processSheet imports the data rows of one sheet. The returned error
// aborts the whole import.
func (imp *sheetImporter) processSheet(ctx context.Context, sheet *xlsx.Sheet, cfg SheetConfig) (SheetSummary, error) {
	summary := SheetSummary{Name: sheet.Name}
	fail := func(row int, err error) {
		summary.Errors++
		summary.Samples = append(summary.Samples, RowError{
			Sheet:   sheet.Name,
			Row:     row,
			Code:    models.Kind(err),
			Message: err.Error(),
		})
	}

	if sheet.MaxRow == 0 {
		return summary, nil
	}

	headerRow, err := sheet.Row(0)
	if err != nil {
		fail(1, fmt.Errorf("failed to read header row: %w", err))
		return summary, nil
	}
	columns := mapHeader(headerRow, sheet.MaxCol, cfg.Aliases)
	if _, ok := columns[FieldSerialNumber]; !ok {
		fail(1, fmt.Errorf("%w: no serial number column", models.ErrInvalidArgument))
		return summary, nil
	}

	for rowIdx := 1; rowIdx < sheet.MaxRow; rowIdx++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		row, err := sheet.Row(rowIdx)
		if err != nil {
			break
		}

		values := make(map[string]string, len(columns))
		for field, col := range columns {
			if v := strings.TrimSpace(row.GetCell(col).String()); v != "" {
				values[field] = v
			}
		}
		if len(values) == 0 {
			summary.Skipped++
			continue
		}

		req, err := buildRequest(values, cfg)
		if err == nil {
			err = imp.create(ctx, req)
		}
		if errors.Is(err, models.ErrForbidden) {
			return summary, err
		}
		if err != nil {
			fail(rowIdx+1, err)
			continue
		}
		summary.Inserted++
	}

	return summary, nil
}

func (imp *sheetImporter) create(ctx context.Context, req models.CreateAssetRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if imp.seen[req.SerialNumber] {
		return fmt.Errorf("serial %q appears twice in the workbook: %w", req.SerialNumber, models.ErrDuplicateSerialNumber)
	}
	if !imp.opts.DryRun {
		if _, err := imp.creator.CreateAsset(ctx, imp.opts.Caller, req); err != nil {
			return err
		}
	}
	imp.seen[req.SerialNumber] = true
	return nil
}

// mapHeader resolves each known field to the column of its first matching
// header. Matching ignores case; a header equal to the field name matches too.
func mapHeader(header *xlsx.Row, maxCol int, aliases map[string][]string) map[string]int {
	byName := make(map[string]int)
	for col := 0; col < maxCol; col++ {
		name := strings.ToUpper(strings.TrimSpace(header.GetCell(col).String()))
		if name == "" {
			continue
		}
		if _, dup := byName[name]; !dup {
			byName[name] = col
		}
	}

	columns := make(map[string]int)
	for _, field := range []string{FieldCategory, FieldSerialNumber, FieldStatus} {
		candidates := append([]string{field}, aliases[field]...)
		for _, alias := range candidates {
			if col, ok := byName[strings.ToUpper(strings.TrimSpace(alias))]; ok {
				columns[field] = col
				break
			}
		}
	}
	return columns
}

func buildRequest(values map[string]string, cfg SheetConfig) (models.CreateAssetRequest, error) {
	var req models.CreateAssetRequest

	category := values[FieldCategory]
	if category == "" {
		category = cfg.Category
	}
	c, err := models.ParseCategory(category)
	if err != nil {
		return req, err
	}
	req.Category = c
	req.SerialNumber = values[FieldSerialNumber]

	status := values[FieldStatus]
	if status == "" {
		status = cfg.Status
	}
	if status != "" {
		st, err := models.ParseStatus(status)
		if err != nil {
			return req, err
		}
		req.Status = &st
	}
	return req, nil
}
