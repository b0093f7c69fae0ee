// Package services sits between the HTTP handlers and the operations
// package. Handlers stay limited to request decoding and response rendering;
// services own job submission, status lookup and health reporting.
package services
