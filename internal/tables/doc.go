// Package tables builds, prunes, encodes and merges the wide pickup table:
// one row per (taxi type, date, pickup place) with 24 hourly count columns.
package tables
