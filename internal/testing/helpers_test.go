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

package testing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/rie/pkg/records"
)

func TestEntity(t *testing.T) {
	e := Entity("800123", "Acme Corp", "In Existence")
	require.NotNil(t, e)
	assert.Equal(t, "800123", e.FilingNumber)
	assert.Equal(t, "Acme Corp", e.Name)
	assert.Equal(t, "In Existence", e.Status)
	assert.Equal(t, "tx", e.Jurisdiction)
}

func TestEntityWithHistory(t *testing.T) {
	e := EntityWithHistory("800123", "Acme Corp",
		records.FilingEvent{DocumentNumber: "1", FilingType: "Certificate of Formation", FilingDate: "2019-04-01"},
		records.FilingEvent{DocumentNumber: "2", FilingType: "Tax Forfeiture", FilingDate: "2021-02-12"},
	)
	require.Len(t, e.FilingHistory, 2)
	assert.Equal(t, "Tax Forfeiture", e.FilingHistory[1].FilingType)
}

func TestWriteFixtureAndReadOutput(t *testing.T) {
	dir := t.TempDir()
	path := WriteFixture(t, dir, "sub/fixture.txt", "hello")
	assert.FileExists(t, path)

	data := ReadOutput(t, dir, "sub/fixture.txt")
	assert.Equal(t, "hello", string(data))
}

func TestTabularJSON(t *testing.T) {
	var rows []map[string]string
	require.NoError(t, json.Unmarshal([]byte(TabularJSON("1", "2")), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0]["filing_number"])
	assert.Equal(t, "Entity 2", rows[1]["name"])
}
