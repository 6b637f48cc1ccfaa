// Package parse converts model-produced text into typed Go values.
//
// Language models frequently emit almost-JSON: single quotes, unquoted keys,
// trailing commas. ParseStringAs tolerates this by repairing the content with
// jsonrepair when strict unmarshaling fails, so protocol parsers and tool
// dispatch can stay lenient without hand-rolled cleanup.
package parse
