// Package harness runs navigation scenarios against a real router.
//
// A scenario names a CUE route table, installs declarative guards, drives
// the router through push, replace and history moves, and checks the
// recorded trace and final state.
//
// # Scenario Format
//
//	name: auth_redirect
//	description: "Private pages bounce to the login page"
//	routes: routes.cue
//	mode: abstract
//	guards:
//	  - hook: beforeEach
//	    when: /private*
//	    decision: redirect
//	    target: /login
//	steps:
//	  - push: /private
//	    expect:
//	      outcome: redirected
//	      error: REDIRECTED
//	      route: /login
//	assertions:
//	  - type: final_route
//	    path: /login
//	  - type: trace_order
//	    events:
//	      - {kind: finish, to: /private, outcome: redirected}
//	      - {kind: finish, to: /login, outcome: committed}
//
// # Assertion Types
//
//   - final_route: the committed route's full path and/or name
//   - trace_contains: some trace event matches (subset match)
//   - trace_order: matching events appear in the given order
//   - trace_count: exactly count events match
//   - history_length: the history backend holds count entries
//
// # Deterministic Testing
//
// Navigation ids (nav-1, nav-2, ...), history keys and trace sequence
// numbers come from testutil sources, so traces compare byte for byte
// against golden files.
package harness
