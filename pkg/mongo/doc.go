// Package mongo connects the official MongoDB driver using environment
// configuration. The analysis status store and the change feed listener are
// built on the returned client.
package mongo
