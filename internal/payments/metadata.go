package payments

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/restaurant-checkout/internal/fees"
	"github.com/angelmondragon/restaurant-checkout/pkg/types"
)

// Metadata keys written on every intent.
const (
	MetaSubtotal        = "subtotal"
	MetaServiceFee      = "serviceFee"
	MetaTotal           = "total"
	MetaCustomerName    = "customerName"
	MetaCustomerEmail   = "customerEmail"
	MetaCustomerPhone   = "customerPhone"
	MetaDeliveryAddress = "deliveryAddress"
	MetaOrderType       = "orderType"
	MetaItemsTruncated  = "itemsTruncated"
	MetaItemCount       = "orderItemCount"
	metaItemsPrefix     = "orderItems_"

	// Processor limit on a single metadata value.
	maxMetadataValue = 500

	DefaultChunkSize = 500
	DefaultMaxChunks = 10
)

// metadataItem is the compact item form stored in metadata.
type metadataItem struct {
	Name      string `json:"n"`
	Price     string `json:"p"`
	Quantity  int    `json:"q"`
	Variation string `json:"v,omitempty"`
}

// MetadataCodec writes and reads the order snapshot carried on an intent.
type MetadataCodec struct {
	ChunkSize int
	MaxChunks int
}

// DefaultCodec uses 500-character chunks and at most 10 item keys.
func DefaultCodec() MetadataCodec {
	return MetadataCodec{ChunkSize: DefaultChunkSize, MaxChunks: DefaultMaxChunks}
}

// Snapshot is what can be recovered from intent metadata. It is lossy: names
// are split heuristically and items are absent when they did not fit.
type Snapshot struct {
	Subtotal       decimal.Decimal
	ServiceFee     decimal.Decimal
	Total          decimal.Decimal
	Customer       types.CustomerInfo
	Items          types.OrderItems
	ItemCount      int
	ItemsTruncated bool
}

// Reconstructable reports whether the snapshot carries a complete item list.
func (s Snapshot) Reconstructable() bool {
	return !s.ItemsTruncated && len(s.Items) > 0 && len(s.Items) == s.ItemCount
}

// Encode builds the metadata bag for an intent.
func (c MetadataCodec) Encode(totals fees.Totals, items types.OrderItems, customer types.CustomerInfo) (map[string]string, error) {
	c = c.normalized()
	meta := map[string]string{
		MetaSubtotal:      totals.Subtotal.StringFixed(2),
		MetaServiceFee:    totals.ServiceFee.StringFixed(2),
		MetaTotal:         totals.Total.StringFixed(2),
		MetaCustomerName:  clip(customer.FullName()),
		MetaCustomerEmail: clip(customer.Email),
		MetaItemCount:     strconv.Itoa(len(items)),
	}
	if customer.Phone != "" {
		meta[MetaCustomerPhone] = clip(customer.Phone)
	}
	orderType := customer.OrderType
	if orderType == "" {
		orderType = "pickup"
	}
	meta[MetaOrderType] = orderType
	if customer.Address != "" {
		meta[MetaDeliveryAddress] = clip(customer.Address)
	}

	compact := make([]metadataItem, 0, len(items))
	for _, item := range items {
		entry := metadataItem{
			Name:     item.Name,
			Price:    item.UnitPrice.StringFixed(2),
			Quantity: item.Quantity,
		}
		if item.Variation != nil {
			entry.Variation = *item.Variation
		}
		compact = append(compact, entry)
	}
	raw, err := json.Marshal(compact)
	if err != nil {
		return nil, fmt.Errorf("encode items metadata: %w", err)
	}

	chunks := chunkRunes(string(raw), c.ChunkSize)
	if len(chunks) > c.MaxChunks {
		meta[MetaItemsTruncated] = "true"
		return meta, nil
	}
	meta[MetaItemsTruncated] = "false"
	for i, chunk := range chunks {
		meta[metaItemsPrefix+strconv.Itoa(i)] = chunk
	}
	return meta, nil
}

// Decode parses metadata written by Encode.
func (c MetadataCodec) Decode(meta map[string]string) (Snapshot, error) {
	c = c.normalized()
	var snap Snapshot
	var err error
	if snap.Subtotal, err = decimal.NewFromString(meta[MetaSubtotal]); err != nil {
		return Snapshot{}, fmt.Errorf("metadata %s: %w", MetaSubtotal, err)
	}
	if snap.ServiceFee, err = decimal.NewFromString(meta[MetaServiceFee]); err != nil {
		return Snapshot{}, fmt.Errorf("metadata %s: %w", MetaServiceFee, err)
	}
	if snap.Total, err = decimal.NewFromString(meta[MetaTotal]); err != nil {
		return Snapshot{}, fmt.Errorf("metadata %s: %w", MetaTotal, err)
	}
	if !snap.Subtotal.Add(snap.ServiceFee).Equal(snap.Total) {
		return Snapshot{}, fmt.Errorf("metadata totals do not add up: %s + %s != %s", snap.Subtotal, snap.ServiceFee, snap.Total)
	}

	first, last := types.SplitName(meta[MetaCustomerName])
	snap.Customer = types.CustomerInfo{
		FirstName: first,
		LastName:  last,
		Email:     meta[MetaCustomerEmail],
		Phone:     meta[MetaCustomerPhone],
		Address:   meta[MetaDeliveryAddress],
		OrderType: meta[MetaOrderType],
	}
	if n, err := strconv.Atoi(meta[MetaItemCount]); err == nil {
		snap.ItemCount = n
	}
	snap.ItemsTruncated = meta[MetaItemsTruncated] == "true"
	if snap.ItemsTruncated {
		return snap, nil
	}

	var b strings.Builder
	for i := 0; i < c.MaxChunks; i++ {
		chunk, ok := meta[metaItemsPrefix+strconv.Itoa(i)]
		if !ok {
			break
		}
		b.WriteString(chunk)
	}
	if b.Len() == 0 {
		return snap, nil
	}

	var compact []metadataItem
	if err := json.Unmarshal([]byte(b.String()), &compact); err != nil {
		return Snapshot{}, fmt.Errorf("metadata items: %w", err)
	}
	for _, entry := range compact {
		price, err := decimal.NewFromString(entry.Price)
		if err != nil {
			return Snapshot{}, fmt.Errorf("metadata item %q price: %w", entry.Name, err)
		}
		item := types.OrderItem{Name: entry.Name, UnitPrice: price, Quantity: entry.Quantity}
		if entry.Variation != "" {
			variation := entry.Variation
			item.Variation = &variation
		}
		snap.Items = append(snap.Items, item)
	}
	return snap, nil
}

func (c MetadataCodec) normalized() MetadataCodec {
	if c.ChunkSize <= 0 || c.ChunkSize > maxMetadataValue {
		c.ChunkSize = DefaultChunkSize
	}
	if c.MaxChunks <= 0 {
		c.MaxChunks = DefaultMaxChunks
	}
	return c
}

// chunkRunes splits s into pieces of at most size runes.
func chunkRunes(s string, size int) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

func clip(value string) string {
	runes := []rune(value)
	if len(runes) <= maxMetadataValue {
		return value
	}
	return string(runes[:maxMetadataValue])
}
