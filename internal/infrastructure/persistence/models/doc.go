// Package models contains GORM persistence models that map to database tables.
// Domain entities carry no ORM tags; repositories convert through the
// ToDomain / ...FromDomain mappers defined here.
//
// Structure:
//   - base.go: shared columns and the optimistic-lock version
//   - payment.go: payments with the flattened fee breakdown
//   - enrollment.go: enrollments and their append-only payment history
//   - cashsession.go: cash sessions, ledger entries, cash-outs and reports
//   - catalog.go: read models for classes, students, cards and promo codes
package models
