// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"k8s.io/utils/set"
)

// GroupDomain is the suffix shared by every platform API group.
const GroupDomain = "example.tech"

// groupFilter lists the API groups served by platform operators, in the order
// they are reported to users. It must not be modified at runtime.
var groupFilter = []string{
	"airflow." + GroupDomain,
	"druid." + GroupDomain,
	"hbase." + GroupDomain,
	"hdfs." + GroupDomain,
	"hive." + GroupDomain,
	"kafka." + GroupDomain,
	"nifi." + GroupDomain,
	"spark." + GroupDomain,
	"superset." + GroupDomain,
	"trino." + GroupDomain,
	"zookeeper." + GroupDomain,
	"authentication." + GroupDomain,
	"s3." + GroupDomain,
	"secrets." + GroupDomain,
	"opa." + GroupDomain,
	"listeners." + GroupDomain,
}

var groupSet = set.New(groupFilter...)

// GroupFilter returns the API groups considered part of the platform.
// The returned slice is a copy.
func GroupFilter() []string {
	groups := make([]string, len(groupFilter))
	copy(groups, groupFilter)
	return groups
}

// IsPlatformGroup returns true if the given API group is in the group filter.
func IsPlatformGroup(group string) bool {
	return groupSet.Has(group)
}
