// Package core holds the credential bridge: the layered credential source,
// the runtime state writer and the injection scheduler that re-sends a
// credential payload to the embedded runtime until its retry budget runs out
// or the owning view goes away. Adapters depend on this package, never the
// other way around.
package core
