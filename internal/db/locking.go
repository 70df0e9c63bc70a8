package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockForUpdate adds a FOR UPDATE row lock to the query on dialects that
// support it. InnoDB then holds the scanned rows and their gaps until the
// transaction commits, so concurrent capacity checks serialize instead of
// reading the same consistent snapshot. sqlite rejects the syntax and
// serializes writers on its own, so the clause is skipped there.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
