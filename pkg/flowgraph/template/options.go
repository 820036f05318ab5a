package template

// MissingAction specifies how Render treats a placeholder with no value.
type MissingAction int

const (
	// MissingError makes Render fail. This is the default.
	MissingError MissingAction = iota

	// MissingEmpty renders the placeholder as an empty string.
	MissingEmpty

	// MissingKeep leaves the placeholder in the output.
	MissingKeep
)

// Option configures a Template.
type Option func(*Template)

// WithMissingAction sets how missing variables are handled.
//
// Example:
//
//	t := template.MustParse("hint", "Context: ${query_context}",
//	    template.WithMissingAction(template.MissingEmpty))
func WithMissingAction(action MissingAction) Option {
	return func(t *Template) {
		t.missing = action
	}
}
