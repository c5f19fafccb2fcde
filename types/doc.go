// Package types provides core types shared across the context budgeting
// subsystem. This package has ZERO dependencies on other packages in this
// module to avoid circular imports; everything else imports types from here.
package types
