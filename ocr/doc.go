// Package ocr defines the contract for OCR engines (for example Tesseract
// or a remote document-AI service) and turns a directory of page images
// into per-page result records that the aggregate package combines.
package ocr
