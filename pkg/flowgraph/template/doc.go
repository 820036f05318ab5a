/*
Package template renders prompt texts with ${name} placeholders.

# Basic Usage

Parse once, usually at package level, and render per call:

	var scoutPrompt = template.MustParse("scout", `Player record:
	${player_detail}

	Recent conversation:
	${conversation_summary}`)

	text, err := scoutPrompt.Render(map[string]any{
	    "player_detail":        detail,  // structs and maps render as indented JSON
	    "conversation_summary": summary, // strings are inserted as is
	})

Only the brace form is recognized, so prompts may contain JSON, SQL or
shell snippets with bare dollar signs.

# Missing Variables

By default a placeholder without a value fails the render with an
*UndefinedVariableError. WithMissingAction(MissingEmpty) drops such
placeholders and WithMissingAction(MissingKeep) leaves them in place.

# Thread Safety

A parsed Template is immutable and safe for concurrent use.
*/
package template
