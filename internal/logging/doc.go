// Package logging assembles the structured slog loggers used across helix
// components, plus the shared attribute keys so claim and transition log
// lines carry consistent entity/worker fields everywhere. Prefer these
// constructors over hand-rolled slog setup.
package logging
