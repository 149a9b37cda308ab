// Package storage writes scraped datasets to disk.
//
// Each document type becomes one file in the output directory, named
// {type}_{YYYYMMDD_HHMMSS}.csv (or .jsonl for JSON lines). Files are written
// to a temporary path and renamed into place, so a partially written dataset
// is never visible under its final name.
//
// Usage:
//
//	manager, err := storage.NewManager("downloads", storage.FormatCSV, true)
//	if err != nil {
//	    return err
//	}
//	path, err := manager.SaveDataset(dataset)
package storage
