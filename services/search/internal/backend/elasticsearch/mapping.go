package elasticsearch

// DefaultIndexName is the default Elasticsearch index for catalog documents.
const DefaultIndexName = "search_catalog"

// buildIndexMapping returns the JSON mapping for the catalog index. The
// product payload is stored but not indexed so arbitrary backend fields
// survive a round trip.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "product_analyzer": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "asciifolding"]
        },
        "autocomplete_analyzer": {
          "type": "custom",
          "tokenizer": "autocomplete_tokenizer",
          "filter": ["lowercase", "asciifolding"]
        },
        "autocomplete_search": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "asciifolding"]
        }
      },
      "normalizer": {
        "lowercase_normalizer": {
          "type": "custom",
          "filter": ["lowercase", "asciifolding"]
        }
      },
      "tokenizer": {
        "autocomplete_tokenizer": {
          "type": "edge_ngram",
          "min_gram": 2,
          "max_gram": 20,
          "token_chars": ["letter", "digit"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "productId":    { "type": "keyword" },
      "name":         { "type": "text", "analyzer": "product_analyzer", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 }, "autocomplete": { "type": "text", "analyzer": "autocomplete_analyzer", "search_analyzer": "autocomplete_search" } } },
      "description":  { "type": "text", "analyzer": "product_analyzer" },
      "brand":        { "type": "text", "analyzer": "product_analyzer", "fields": { "keyword": { "type": "keyword" } } },
      "categories":   { "type": "keyword", "normalizer": "lowercase_normalizer" },
      "categoryPath": { "type": "keyword", "normalizer": "lowercase_normalizer" },
      "product":      { "type": "object", "enabled": false }
    }
  }
}`
}
