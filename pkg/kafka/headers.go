package kafka

import "github.com/IBM/sarama"

// headerCarrier adapts record headers to propagation.TextMapCarrier.
type headerCarrier []sarama.RecordHeader

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	*c = append(*c, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, string(h.Key))
	}
	return keys
}

func consumerHeaders(in []*sarama.RecordHeader) headerCarrier {
	out := make(headerCarrier, 0, len(in))
	for _, h := range in {
		if h != nil {
			out = append(out, *h)
		}
	}
	return out
}
