// Package models defines the persisted domain models for Splitledger.
//
// # Models
//
//   - Group: a set of people sharing expenses, with its member roster
//   - Member: one person inside a group, identified by ID (names are display-only)
//   - Expense: a payment made by one member on behalf of some participants
//   - Participant: the share of one expense attributed to one member
//   - Category: a label for expenses (seeded list, e.g. "Food & Drink")
//   - User: a registered account, used only when authentication is enabled
//
// # Design Principles
//
// 1. **IDs, not pointers**: relationships use ID strings to avoid circular references
// 2. **Exact money**: amounts and shares are decimal.Decimal, never float64
// 3. **Derived views stay out**: balances and settlement plans are computed on
// demand by the calculator package and are never stored here
package models
