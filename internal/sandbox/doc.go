/*
Package sandbox runs JavaScript snippets in isolated goja runtimes.

# Overview

Every execution gets a brand new runtime built by a Builder. The runtime's
global scope exposes only:

  - console: log, info, warn and error, captured by a Collector
  - require: relative loads through the modules package
  - module and exports: placeholders so module-style snippets evaluate

The Executor compiles the snippet, runs it once, and serialises the
completion value with the guest's JSON.stringify. Failures are rendered as
an ExecutionError ("message | stack: trace") and appended to the console
records.

# Known gaps

This is not a hardened sandbox. Shared built-ins can be polluted within one
runtime, bare require specifiers reach host modules, and unless WithTimeout
is set a snippet that never terminates holds its goroutine forever.

# Usage

	b := sandbox.NewBuilder(resolver, mirror, metrics)
	exec := sandbox.NewExecutor(b, sandbox.WithTimeout(cfg.ExecTimeout))

	res, err := exec.Execute(ctx, `console.log("hi"); 1 + 1`)
*/
package sandbox
