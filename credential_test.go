// Copyright 2026 The Doorward Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package doorward

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeCandidates_Standard26(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		facility uint32
		card     uint32
		wantFob  Credential
	}{
		{name: "facility 0 card 1", facility: 0, card: 1, wantFob: 1},
		{name: "typical", facility: 42, card: 12345, wantFob: 4212345},
		{name: "max values", facility: 255, card: 65535, wantFob: 25565535},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := DecodeCandidates(Frame{Bits: 26, Payload: tt.facility<<16 | tt.card})
			assert.Equal(t, tt.wantFob, c.Fob)
			assert.Equal(t, tt.facility, c.Facility)
			assert.Equal(t, tt.card, c.Card)
			assert.False(t, c.HasNFC, "24-bit payloads have no NFC decoding")
		})
	}
}

// The decimal concatenation is ambiguous under leading-zero values. This
// is how the fob database was built, so the collision is load-bearing.
func TestDecodeCandidates_ConcatenationCollision(t *testing.T) {
	t.Parallel()

	a := DecodeCandidates(Frame{Bits: 26, Payload: 1<<16 | 23})
	b := DecodeCandidates(Frame{Bits: 26, Payload: 12<<16 | 3})
	assert.Equal(t, Credential(123), a.Fob)
	assert.Equal(t, a.Fob, b.Fob)
}

func TestDecodeCandidates_Standard34(t *testing.T) {
	t.Parallel()

	c := DecodeCandidates(Frame{Bits: 34, Payload: 0xAABBCCDD})
	// facility 0xAA = 170, card 0xBBCCDD = 12307677
	assert.Equal(t, Credential(17012307677), c.Fob)
	assert.Equal(t, uint32(170), c.Facility)
	assert.Equal(t, uint32(0xBBCCDD), c.Card)
}

func TestDecodeCandidates_NFCByteReversal(t *testing.T) {
	t.Parallel()

	c := DecodeCandidates(Frame{Bits: 34, Payload: 0x12345678})
	assert.True(t, c.HasNFC)
	assert.Equal(t, Credential(0x78563412), c.NFC)
	assert.Equal(t, "78:56:34:12", c.NFCHex())
}

func TestCandidates_NFCHexEmptyFor26Bit(t *testing.T) {
	t.Parallel()

	c := DecodeCandidates(Frame{Bits: 26, Payload: 0x000001})
	assert.Empty(t, c.NFCHex())
}
