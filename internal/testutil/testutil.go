// Package testutil provides shared helpers for mirror unit tests. Redis backed
// components run against miniredis so no external services are needed.
package testutil
