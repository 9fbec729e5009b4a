// Package integration contains the marketplace synchronization bounded context.
// It defines the canonical order and category model that every marketplace is
// mapped onto, and the ports the sync engine drives.
//
// Key concepts:
//   - PlatformType: typed enum of supported marketplaces (Taobao, Douyin, Kuaishou)
//   - PlatformConnection: one user's credentials for one marketplace
//   - PlatformAdapter: port for fetching raw orders/categories from a marketplace
//   - MappingTable: versioned per-platform status and field precedence table
//   - Normalizer: pure raw record to canonical record mapping
//   - CanonicalOrder / CanonicalCategory: platform independent records keyed by natural key
//   - SyncResult: ephemeral per-connection outcome with its state machine
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
