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

// Package testing provides fixture helpers for RIE tests.
//
// The helpers build sample entities and write input fixtures so that
// tests across packages seed data the same way.
//
// # Quick Start
//
// Build an entity with a filing history:
//
//	func TestMyFeature(t *testing.T) {
//	    e := testing.EntityWithHistory("800123", "Acme Corp",
//	        records.FilingEvent{DocumentNumber: "1", FilingType: "Certificate of Formation", FilingDate: "2019-04-01"},
//	    )
//
//	    // Run your tests...
//	}
//
// # Fixtures
//
// The package provides helpers for on-disk test inputs:
//   - WriteFixture: Write an input file under a temp directory
//   - ReadOutput: Read a file from the output tree
//   - TabularJSON: Build a small registration dump
package testing
