// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
)

// ContentID generates the stable identifier for a decomposed child
// document: the sha256 hex digest of "sourceTag:text". Ingesting
// identical input twice yields the same ID, which makes vector-store
// upserts idempotent.
func ContentID(sourceTag, text string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", sourceTag, text)))
	return hex.EncodeToString(hash[:])
}

// Child-document kinds. Each kind maps to one category directory in
// the output tree and one filename prefix.
const (
	KindEntity           = "entity"
	KindRegisteredAgent  = "registered_agent"
	KindFilingEvent      = "filing"
	KindName             = "name"
	KindManagement       = "management"
	KindAssumedName      = "assumed_name"
	KindAssociatedEntity = "associated_entity"
	KindInitialAddress   = "initial_address"
)

// kindDirs maps a child-document kind to its category directory.
var kindDirs = map[string]string{
	KindEntity:           "entities",
	KindRegisteredAgent:  "registered_agents",
	KindFilingEvent:      "filing_history",
	KindName:             "names",
	KindManagement:       "management",
	KindAssumedName:      "assumed_names",
	KindAssociatedEntity: "associated_entities",
	KindInitialAddress:   "initial_addresses",
}

// PathFor returns the relative output path for a child-document kind
// and its natural key parts. The layout is load-bearing: both the
// index writer and any reader derive paths exclusively through this
// function.
//
//	PathFor(KindEntity, "12345")      -> "entities/entity_12345.json"
//	PathFor(KindFilingEvent, "D1")    -> "filing_history/filing_D1.json"
//	PathFor(KindName, "12345", "0")   -> "names/name_12345_0.json"
func PathFor(kind string, keys ...string) string {
	dir, ok := kindDirs[kind]
	if !ok {
		dir = kind
	}
	name := kind
	for _, k := range keys {
		name += "_" + k
	}
	return path.Join(dir, name+".json")
}

// PagePath returns the relative path of one extracted PDF page,
// zero-padded to four digits.
func PagePath(documentName string, pageNumber int) string {
	return path.Join(documentName, "pages", fmt.Sprintf("page_%04d.json", pageNumber))
}

// AnomalyPath returns the relative path of a page's anomaly report.
// The file exists only when the page produced at least one anomaly.
func AnomalyPath(documentName string, pageNumber int) string {
	return path.Join(documentName, "anomalies", fmt.Sprintf("anomalies_page_%04d.json", pageNumber))
}

// DocumentIndexPath returns the relative path of a PDF's per-source
// index file.
func DocumentIndexPath(documentName string) string {
	return path.Join(documentName, "index.json")
}

// MasterIndexName is the filename of the run-level master index. It is
// always written last; its presence marks a completed run.
const MasterIndexName = "master_index.json"
