package protocol

import "github.com/akhenakh/lspgo-core/jsonrpc2"

// CancelParams is the payload of a $/cancelRequest notification: the id
// of the request the sender no longer wants a response for.
type CancelParams struct {
	ID jsonrpc2.ID `json:"id"`
}

// PartialResultParams is embedded by any request params type whose
// handler may stream results back via $/partialResult notifications
// before its final response, e.g. workspace/symbol over a large index.
type PartialResultParams struct {
	PartialResultToken *jsonrpc2.ID `json:"partialResultToken,omitempty"`
}

// XFilesParams requests the full set of file URIs a worker should
// consider part of the workspace, answered by the front connection on
// behalf of a back-end worker that has no filesystem access of its own.
type XFilesParams struct {
	Base string `json:"base,omitempty"`
}

// XContentParams requests the current in-editor content of a single
// file, keyed by the same textDocument identifier used elsewhere.
type XContentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// TextDocumentPositionParams identifies a position inside a text
// document, the common shape underlying hover/definition/references.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// SymbolDescriptor identifies a symbol across repository boundaries,
// the unit workspace/xreferences and textDocument/xdefinition exchange
// in place of a plain Location so a result can point outside the
// current workspace.
type SymbolDescriptor struct {
	Package       *PackageDescriptor `json:"package,omitempty"`
	Name          string             `json:"name"`
	ContainerName string             `json:"containerName,omitempty"`
}

// PackageDescriptor identifies the package/module a SymbolDescriptor
// or ReferenceInformation belongs to.
type PackageDescriptor struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ReferenceInformation pairs a SymbolDescriptor with the Location of
// one of its references, the element type of a workspace/xreferences
// result list.
type ReferenceInformation struct {
	Reference Location         `json:"reference"`
	Symbol    SymbolDescriptor `json:"symbol"`
}

// DependencyReference names a package this workspace depends on, the
// element type of a workspace/xdependencies result list.
type DependencyReference struct {
	Attributes PackageDescriptor `json:"attributes"`
}

// XReferencesParams scopes a workspace/xreferences query to symbols
// matching a partial SymbolDescriptor.
type XReferencesParams struct {
	Query SymbolDescriptor `json:"query"`
	Hints map[string]any   `json:"hints,omitempty"`
	PartialResultParams
}

// XDefinitionParams is textDocument/xdefinition's request shape: a
// plain position lookup that answers with a SymbolDescriptor instead
// of a bare Location, so the definition can live in another repository.
type XDefinitionParams struct {
	TextDocumentPositionParams
}

// XPackagesParams requests the set of packages this workspace
// provides, with no fields of its own today.
type XPackagesParams struct{}

// PackageInformation pairs a PackageDescriptor with its dependencies,
// the element type of a workspace/xpackages result list.
type PackageInformation struct {
	Package      PackageDescriptor   `json:"package"`
	Dependencies []PackageDescriptor `json:"dependencies,omitempty"`
}
