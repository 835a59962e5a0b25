package builders

import (
	"fmt"
	"time"

	"github.com/rushteam/targetdb/config"
	"github.com/rushteam/targetdb/descriptor"
	"github.com/rushteam/targetdb/feature"
	"github.com/rushteam/targetdb/filter"
	"github.com/rushteam/targetdb/pipeline"
	"github.com/rushteam/targetdb/pkg/conv"
	"github.com/rushteam/targetdb/rank"
)

func init() {
	config.Register("feature.extract", BuildExtractNode)
	config.Register("descriptor.build", BuildDescribeNode)
	config.Register("rank.tractability", BuildTractabilityNode)
	config.Register("filter", BuildFilterNode)
}

// BuildExtractNode 配置：query_timeout（秒）
func BuildExtractNode(deps config.Deps, cfg map[string]interface{}) (pipeline.Node, error) {
	if deps.Session == nil {
		return nil, fmt.Errorf("feature.extract requires a store session")
	}
	opts := []feature.ExtractorOption{feature.WithLogger(deps.Logger)}
	if sec := conv.ConfigGetInt64(cfg, "query_timeout", 0); sec > 0 {
		opts = append(opts, feature.WithQueryTimeout(time.Duration(sec)*time.Second))
	}
	return &feature.ExtractNode{Extractor: feature.NewExtractor(deps.Session, opts...)}, nil
}

func BuildDescribeNode(deps config.Deps, _ map[string]interface{}) (pipeline.Node, error) {
	schema := deps.Schema
	if len(schema.Columns) == 0 {
		schema = descriptor.DefaultSchema()
	}
	return &descriptor.DescribeNode{Builder: descriptor.NewBuilder(descriptor.WithSchema(schema))}, nil
}

// BuildTractabilityNode 配置：model_name
func BuildTractabilityNode(deps config.Deps, cfg map[string]interface{}) (pipeline.Node, error) {
	if deps.Model == nil {
		return nil, fmt.Errorf("rank.tractability requires a model")
	}
	return &rank.TractabilityNode{
		Model:     deps.Model,
		ModelName: conv.ConfigGet(cfg, "model_name", ""),
	}, nil
}

// BuildFilterNode 配置：
//
//	filters:
//	  - type: expr
//	    expr: item.probability >= 80.0 && !item.in_training_set
//	  - type: exclude
//	    target_ids: [T1, T2]
//	    key: targetdb:exclude
func BuildFilterNode(deps config.Deps, cfg map[string]interface{}) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}

	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]interface{})
		if !ok {
			continue
		}
		filterType := conv.ConfigGet(filterMap, "type", "")
		switch filterType {
		case "expr":
			expr := conv.ConfigGet(filterMap, "expr", "")
			if expr == "" {
				return nil, fmt.Errorf("expr filter without expression")
			}
			f, err := filter.NewExprFilter(expr)
			if err != nil {
				return nil, fmt.Errorf("expr filter: %w", err)
			}
			filters = append(filters, f)

		case "exclude":
			ids := conv.SliceAnyToString(filterMap["target_ids"])
			if ids == nil {
				ids = []string{}
			}
			key := conv.ConfigGet(filterMap, "key", "")
			var adapter *filter.StoreAdapter
			if key != "" && deps.KV != nil {
				adapter = filter.NewStoreAdapter(deps.KV)
			}
			filters = append(filters, filter.NewExcludeFilter(ids, adapter, key))

		default:
			return nil, fmt.Errorf("unknown filter type: %s", filterType)
		}
	}

	return &filter.FilterNode{Filters: filters, Logger: deps.Logger}, nil
}
