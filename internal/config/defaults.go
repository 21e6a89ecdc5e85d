package config

// OutputSuffix replaces the trailing ".csv" of a converted file.
const OutputSuffix = "_supabase.csv"

// ArrayColumns returns the columns whose values are JSON-style arrays in
// Lovable exports and must become PostgreSQL array literals.
func ArrayColumns() []string {
	return []string{"materials", "printer_models"}
}

// BatchFiles returns the exports converted by the batch command, in order.
func BatchFiles() []string {
	return []string{
		"contributors.csv",
		"profiles.csv",
		"user_roles.csv",
		"wheelchair_projects.csv",
		"part_templates.csv",
		"beneficiary_requests.csv",
	}
}

// OptionalBatchFiles returns exports that are only converted when present.
func OptionalBatchFiles() []string {
	return []string{"parts.csv"}
}
