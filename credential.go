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
	"fmt"
	"math/bits"
	"strconv"
)

// Credential is an unsigned identifier a scan can present. The Conway
// server stores fob numbers and NFC UIDs in the same flat namespace.
type Credential uint64

// Candidates holds every credential identifier derivable from one frame.
// A scan matches if either candidate is in the allow list.
type Candidates struct {
	// Fob is the standard decoding: facility code and card number joined
	// by decimal string concatenation. This is how the Conway fob
	// database was built, so it is preserved exactly, including the
	// ambiguity under leading-zero values (facility 1 card 23 and
	// facility 12 card 3 both produce 123).
	Fob Credential
	// NFC is the byte-reversed raw payload, present for 32-bit payloads
	// only. Tag-style readers emit the UID in wire byte order.
	NFC      Credential
	HasNFC   bool
	Facility uint32
	Card     uint32
}

// DecodeCandidates derives the credential candidates from a validated
// frame. The facility code is the upper 8 payload bits; the card number
// is everything below it.
func DecodeCandidates(f Frame) Candidates {
	payloadBits := f.Bits - 2
	facility := f.Payload >> (payloadBits - 8)
	card := f.Payload & (1<<(payloadBits-8) - 1)

	joined := strconv.FormatUint(uint64(facility), 10) +
		strconv.FormatUint(uint64(card), 10)
	fob, err := strconv.ParseUint(joined, 10, 64)
	if err != nil {
		// 8+24 bit decimal digits always fit in uint64
		fob = 0
	}

	c := Candidates{
		Fob:      Credential(fob),
		Facility: facility,
		Card:     card,
	}
	if payloadBits >= 32 {
		c.NFC = Credential(bits.ReverseBytes32(f.Payload))
		c.HasNFC = true
	}
	return c
}

// NFCHex formats the alternate credential as hex byte pairs for logging.
func (c Candidates) NFCHex() string {
	if !c.HasNFC {
		return ""
	}
	v := uint32(c.NFC)
	return fmt.Sprintf("%02X:%02X:%02X:%02X",
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
