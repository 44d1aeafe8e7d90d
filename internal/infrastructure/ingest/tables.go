package ingest

import (
	"io"

	"github.com/turtacn/leadscope/internal/domain/installbase"
)

// ReadAssets reads the install-base table.
func ReadAssets(src io.Reader) ([]*installbase.Asset, []installbase.Issue, error) {
	var out []*installbase.Asset
	issues, err := readTable(src, installbase.TableAssets, assetColumns, func(t *table, rec []string, row int) {
		out = append(out, &installbase.Asset{
			SerialID:      t.get(rec, "serial_id"),
			ProductName:   t.get(rec, "product_name"),
			ProductNumber: t.get(rec, "product_number"),
			ProductFamily: t.get(rec, "product_family"),
			TerritoryID:   t.get(rec, "territory_id"),
			AccountName:   t.get(rec, "account_name"),
			BusinessArea:  t.get(rec, "business_area"),
			SupportStatus: t.get(rec, "support_status"),
			EOLDate:       t.date(rec, row, "eol_date"),
			EOSLDate:      t.date(rec, row, "eosl_date"),
			Description:   t.get(rec, "description"),
			Row:           row,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return out, issues, nil
}

// ReadOpportunities reads the sales-pipeline table.
func ReadOpportunities(src io.Reader) ([]*installbase.Opportunity, []installbase.Issue, error) {
	var out []*installbase.Opportunity
	issues, err := readTable(src, installbase.TableOpportunities, opportunityColumns, func(t *table, rec []string, row int) {
		out = append(out, &installbase.Opportunity{
			ID:          t.get(rec, "opportunity_id"),
			TerritoryID: t.get(rec, "territory_id"),
			AccountName: t.get(rec, "account_name"),
			ProductLine: t.get(rec, "product_line"),
			Row:         row,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return out, issues, nil
}

// ReadProjects reads the delivery-history table.  A size category that
// matches no known band is reported but kept verbatim.
func ReadProjects(src io.Reader) ([]*installbase.Project, []installbase.Issue, error) {
	var out []*installbase.Project
	issues, err := readTable(src, installbase.TableProjects, projectColumns, func(t *table, rec []string, row int) {
		size := t.get(rec, "size_category")
		if size != "" && !installbase.IsSentinel(size) {
			if _, ok := installbase.ParseSizeCategory(size); !ok {
				t.unparsable(row, "size_category", size, "unknown size category; treated as missing")
			}
		}
		out = append(out, &installbase.Project{
			ID:           t.get(rec, "project_id"),
			PrimaryKey:   t.get(rec, "primary_key"),
			SecondaryKey: t.get(rec, "secondary_key"),
			AccountName:  t.get(rec, "account_name"),
			PracticeCode: t.get(rec, "practice_code"),
			StartDate:    t.date(rec, row, "start_date"),
			EndDate:      t.date(rec, row, "end_date"),
			Description:  t.get(rec, "description"),
			SizeCategory: size,
			Row:          row,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return out, issues, nil
}

// ReadCatalog reads the service catalog.  Rows without a service name carry
// nothing to recommend and are skipped.
func ReadCatalog(src io.Reader) ([]installbase.CatalogEntry, []installbase.Issue, error) {
	var out []installbase.CatalogEntry
	issues, err := readTable(src, installbase.TableCatalog, catalogColumns, func(t *table, rec []string, row int) {
		name := t.get(rec, "service_name")
		if name == "" {
			return
		}
		sku := t.get(rec, "sku_code")
		if installbase.IsSentinel(sku) {
			sku = ""
		}
		out = append(out, installbase.CatalogEntry{
			Practice:       t.get(rec, "practice"),
			SubPractice:    t.get(rec, "sub_practice"),
			ServiceName:    name,
			SKUCode:        sku,
			ProductMapping: t.get(rec, "product_mapping"),
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return out, issues, nil
}
