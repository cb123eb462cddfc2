/*
Package modules implements the restricted require() exposed to snippets.

# Resolution

Relative specifiers ("./x", "../x") are sandboxed loads. A snippet's relative
specifier is resolved against the examples directory first and the process
working directory second; a module's own relative specifiers are resolved
against that module's directory, then the same two bases. When no candidate
exists the load fails with ErrModuleNotFound and the error names every
attempted absolute path.

Each base is probed as-is, then with ".js", ".json" and "/index.js".

Every other specifier is handed to the host loader unchanged: built-in host
modules (path, os, fs, yaml, toml, crypto, stats, html), absolute file paths,
and files under the node_modules directory. This pass-through is a known sandbox gap and
is kept on purpose; set HOST_MODULES_ENABLED=false to switch it off.

# Caching

The Cache is eviction bookkeeping only: it records the last load of each
absolute path and keeps no module values or compiled programs. The entry for
a path is evicted immediately before every load, so each require() reads the
current file contents, recompiles and re-runs the module's top-level code.
*/
package modules
