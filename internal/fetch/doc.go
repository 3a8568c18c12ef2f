// Package fetch defines the core types of the URL fetch pipeline together with
// the retry policy and the Fetcher that turns one URL into one Report.
package fetch
