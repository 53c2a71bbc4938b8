// Package config loads team configuration documents.
//
// Each team is described by one YAML file under <dir>/teams, named after
// the team id. The document declares where the team's data lives, the
// columns it contains and the ordered calculation rules to apply:
//
//	team:
//	  id: sales_a
//	  name: Sales A
//	data_source:
//	  kind: local_csv
//	  path: data/sales_a.csv
//	data_format:
//	  columns:
//	    - {name: date, type: datetime, format: "%Y-%m-%d"}
//	    - {name: quantity, type: int}
//	    - {name: unit_price, type: float}
//	calculation_rules:
//	  - name: gross_revenue
//	    formula: quantity * unit_price
//	  - name: monthly_revenue
//	    formula: SUM(gross_revenue)
//	    group_by: ["date::month"]
//
// Columns are required unless they say otherwise. Keys a rule entry does not
// know are ignored with a warning.
package config
