// Package dynamiq is a framework for running DAGs of dependency-aware nodes
// and bounded reason-and-act agent loops on top of them.
//
// The engine lives in the nodes package: every node run settles into exactly
// one success, failure or skip result, with retries, timeouts, caching,
// declarative input/output transforms and a nine-event callback lifecycle.
// The workflow package executes whole graphs level by level; the agents
// package runs a model-driven loop whose tools are themselves nodes; the
// tools package ships ready-made HTTP and calculator tools.
//
// See the examples directory for end-to-end wiring.
package dynamiq
