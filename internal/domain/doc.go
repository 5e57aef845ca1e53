// Package domain models electric-vehicle charging stations and the views
// derived from them.
//
// # Data Sources
//
// Station metadata comes from a static bulk CSV export with one row per
// charger. Several rows share a station identifier; they are merged into a
// single Station whose charger-type label accumulates every type seen.
//
// Real-time charger status comes from a public XML feed that reports one item
// per charger (statId, chgerId, chgerType, stat). The feed is rate limited and
// unreliable; stations it omits get synthetic statuses instead.
//
// # Codes
//
// Charger-type codes:
//
//	01 DC fast/CHAdeMO    02 AC slow              03 DC Combo
//	04 CHAdeMO+AC 3-phase 05 CHAdeMO+DC Combo     06 CHAdeMO+DC Combo+AC 3-phase
//	anything else: "other"
//
// Live stat codes: 1 available, 2 charging, 3 maintenance, anything else "no data".
//
// Bulk status strings are normalized: "3(1)" and "3/1" become "3/1 available",
// a bare "5" becomes "5/5 available", other shapes become "no data".
//
// # Summary strings
//
// A station summary is "<k>/<n> <status>" chosen in priority order: all
// charging, all maintenance, all available, any charging, any maintenance,
// otherwise the available count. See [StatusCounts.Summary].
//
// # Derived views
//
// [ClusterStations] bins stations into a lat/lng grid for map rendering,
// [CountRegions] buckets them by address prefix, and [EstimateHourlyUsage]
// produces a 24-hour usage profile that blends the live usage rate with a
// seeded time-of-day pattern.
package domain
