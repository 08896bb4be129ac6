// Package services implements the driving port interfaces.
// Services contain the document pipeline's business logic and orchestrate
// calls to driven ports (adapters): sectioning and indexing on upload,
// retrieval, synthesis and validation at query time.
//
// Services are pure Go with no CGO or external dependencies.
package services
