// Package catalog keeps a history of prep runs in SQLite: when each ran,
// where it read from and wrote to, and how many elements each split branch
// received. The schema is managed by embedded migrations applied on Open.
package catalog
