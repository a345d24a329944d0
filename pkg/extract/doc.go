// Package extract pulls named values out of request and response payloads
// into an evaluation context.
//
// Rules run in configured order and later writes of the same name win. A
// rule that selects several values registers the first under its name and
// every value under "name.0" to "name.N-1", with the total in "name.count".
// Dataset rules register one variable per column as "name.column".
//
// Optional rules that fail are recorded in the Report. Required rules that
// fail abort extraction with an *ExtractError.
package extract
