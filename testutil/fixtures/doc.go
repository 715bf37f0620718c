// Package fixtures provides the sample books used across tests.
package fixtures
