// Package services implements the driving port interfaces.
// Services contain the core logic: chunking, embedding fusion,
// index management, resource coordination and plan execution.
// They orchestrate calls to driven ports (adapters) and never
// import an adapter package.
package services
