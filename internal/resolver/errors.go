package resolver

import "fmt"

// UnsupportedSyntaxMessage is the fixed error text mandated for any string
// containing a disallowed templating form (${...}, {%...%}, {#...#}, bare {}).
const UnsupportedSyntaxMessage = "Unsupported templating syntax. Use {{VAR}} or {{VAR:DEFAULT}}"

// SyntaxError is raised for any string containing a disallowed templating form.
type SyntaxError struct {
	Value string
}

func (e *SyntaxError) Error() string { return UnsupportedSyntaxMessage }

// MissingKeyError is raised when a token's PATH does not resolve and it carries no DEFAULT.
type MissingKeyError struct {
	Path string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("resolver: missing key %q", e.Path)
}

// DisallowedRootError is raised when a token's PATH root is not in the phase's allowed-roots set.
type DisallowedRootError struct {
	Path string
	Root string
}

func (e *DisallowedRootError) Error() string {
	return fmt.Sprintf("resolver: root %q is not allowed here (path %q)", e.Root, e.Path)
}
