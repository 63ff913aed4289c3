package validate

import (
	"github.com/frameloom-labs/frameloom/pkg/component"
)

// NetworkAccess rejects direct network calls.
var NetworkAccess = RuleDef{
	ID:          "FL001",
	Name:        "capability.network",
	Description: "Components may not open network connections.",
	Check: func(path, source string) []component.Violation {
		return scanTokens(path, source, "FL001",
			"direct network access is not allowed", []string{
				"fetch", "XMLHttpRequest", "WebSocket", "EventSource",
				"http_get", "http_post", "socket",
			})
	},
}

// StorageAccess rejects ambient storage access.
var StorageAccess = RuleDef{
	ID:          "FL002",
	Name:        "capability.storage",
	Description: "Components may not touch host storage.",
	Check: func(path, source string) []component.Violation {
		return scanTokens(path, source, "FL002",
			"ambient storage access is not allowed", []string{
				"localStorage", "sessionStorage", "indexedDB",
				"read_file", "write_file", "open",
			})
	},
}

// DynamicEval rejects dynamic code evaluation from strings.
var DynamicEval = RuleDef{
	ID:          "FL003",
	Name:        "capability.eval",
	Description: "Components may not evaluate code from strings.",
	Check: func(path, source string) []component.Violation {
		return scanTokens(path, source, "FL003",
			"dynamic code evaluation is not allowed", []string{
				"eval", "exec", "compile", "Function",
			})
	},
}

// DynamicLoad rejects dynamic module loading.
var DynamicLoad = RuleDef{
	ID:          "FL004",
	Name:        "capability.dynload",
	Description: "Components may only import statically.",
	Check: func(path, source string) []component.Violation {
		return scanTokens(path, source, "FL004",
			"dynamic module loading is not allowed", []string{
				"load", "importlib", "__import__",
			})
	},
}

// ProcessInternals rejects access to process and host-environment internals.
var ProcessInternals = RuleDef{
	ID:          "FL005",
	Name:        "capability.process",
	Description: "Components may not reach process or host internals.",
	Check: func(path, source string) []component.Violation {
		return scanTokens(path, source, "FL005",
			"process/host internals are not reachable", []string{
				"process", "globalThis", "Deno", "getenv", "environ",
			})
	},
}

// MutableGlobals rejects global mutable singletons, excepting the narrow
// viewport allow-list (reading viewport dimensions is permitted and is
// provided by the sandbox as the read-only `viewport` capability).
var MutableGlobals = RuleDef{
	ID:          "FL006",
	Name:        "capability.globals",
	Description: "Components may not depend on window-like globals or the wall clock.",
	Check: func(path, source string) []component.Violation {
		return scanTokens(path, source, "FL006",
			"global mutable state is not reachable", []string{
				"window", "document", "Date", "now", "performance",
			})
	},
}
