package detector

import "github.com/ccollicutt/bindlog/pkg/parser"

// QueryLogFormat describes a known BIND query log layout.
type QueryLogFormat struct {
	Name     string         // Human-readable name
	Variant  parser.Variant // Parser variant this format maps to
	Releases string         // BIND releases that write it
	Example  string         // Example line
}

// DefaultFormats returns the query log layouts the parser understands,
// in the order the parser tries them.
func DefaultFormats() []*QueryLogFormat {
	return []*QueryLogFormat{
		{
			Name:     "BIND query log with echoed name",
			Variant:  parser.VariantEchoed,
			Releases: "9.9 and later",
			Example:  "25-Nov-2015 10:29:53.073 client 192.168.16.7#60458 (host.example.com): query: host.example.com IN A + (192.168.16.1)",
		},
		{
			Name:     "BIND query log",
			Variant:  parser.VariantPlain,
			Releases: "before 9.9",
			Example:  "28-Mar-2012 16:48:32.412 client 192.168.10.201#60303: query: google.com IN AAAA + (192.168.10.1)",
		},
	}
}

// formatFor returns the format for v, or nil.
func formatFor(formats []*QueryLogFormat, v parser.Variant) *QueryLogFormat {
	for _, f := range formats {
		if f.Variant == v {
			return f
		}
	}
	return nil
}
